package scenario

// Builtin suite names.
const (
	SuiteBuild       = "build"
	SuiteConsistency = "consistency"
)

// BuildSuite returns the functional build suite: bytecode and native
// executables, a multi-file library project, Unix module integration,
// and dune clean.
func BuildSuite() *Suite {
	s := &Suite{
		Name:          SuiteBuild,
		Label:         "Build tests",
		Banner:        "=== Dune Functional Build Tests ===",
		PassBanner:    "=== All dune functional tests passed ===",
		TempPrefix:    "dune_test_",
		ArchSensitive: true,
		ProjectFiles: []FixtureFile{
			{Path: DuneProjectFile, Content: DefaultDuneProject},
		},
		Scenarios: []Scenario{
			{
				Name:      "Bytecode build",
				Title:     "Simple bytecode executable",
				PassLabel: "bytecode build + run",
				FailLabel: "bytecode",
				Files: []FixtureFile{
					{
						Path:    "simple_byte/dune",
						Content: "(executable\n (name hello)\n (modes byte))",
					},
					{
						Path:    "simple_byte/hello.ml",
						Content: `let () = print_endline "Hello from dune (bytecode)"`,
					},
				},
				Steps: []Step{
					{Action: ActionBuild, Target: "simple_byte/hello.bc"},
					{Action: ActionRun, Target: "./_build/default/simple_byte/hello.bc", Expect: "Hello from dune"},
				},
			},
			{
				Name:      "Native build",
				Title:     "Simple native executable",
				PassLabel: "native build + run",
				FailLabel: "native",
				Files: []FixtureFile{
					{
						Path:    "simple_native/dune",
						Content: "(executable\n (name hello)\n (modes native))",
					},
					{
						Path:    "simple_native/hello.ml",
						Content: `let () = print_endline "Hello from dune (native)"`,
					},
				},
				Steps: []Step{
					{Action: ActionBuild, Target: "simple_native/hello.exe"},
					{Action: ActionRun, Target: "./_build/default/simple_native/hello.exe", Expect: "Hello from dune"},
				},
			},
			{
				Name:      "Multi-file build",
				Title:     "Multi-file library project",
				PassLabel: "multi-file library + executable",
				FailLabel: "multi-file",
				Files: []FixtureFile{
					{
						Path: "multifile/dune",
						Content: `(library
 (name mylib)
 (modules mylib))

(executable
 (name main)
 (libraries mylib)
 (modules main))`,
					},
					{
						Path:    "multifile/mylib.ml",
						Content: `let greet name = Printf.printf "Hello, %s!\n" name`,
					},
					{
						Path:    "multifile/main.ml",
						Content: `let () = Mylib.greet "Dune"`,
					},
				},
				Steps: []Step{
					{Action: ActionBuild, Target: "multifile/main.exe"},
					{Action: ActionRun, Target: "./_build/default/multifile/main.exe", Expect: "Hello, Dune"},
				},
			},
			{
				Name:      "Unix module build",
				Title:     "Unix module integration",
				PassLabel: "Unix module compilation + execution",
				FailLabel: "unix",
				Files: []FixtureFile{
					{
						Path:    "unix_test/dune",
						Content: "(executable\n (name unix_test)\n (libraries unix))",
					},
					{
						Path: "unix_test/unix_test.ml",
						Content: `let () =
  let pid = Unix.getpid () in
  Printf.printf "PID: %d\n" pid;
  print_endline "Unix module works"
`,
					},
				},
				Steps: []Step{
					{Action: ActionBuild, Target: "unix_test/unix_test.exe"},
					{Action: ActionRun, Target: "./_build/default/unix_test/unix_test.exe", Expect: "Unix module works"},
				},
			},
			{
				// Cleans the _build tree accumulated by the earlier
				// scenarios, so it must stay last.
				Name:      "Dune clean",
				Title:     "dune clean",
				PassLabel: "dune clean",
				FailLabel: "dune clean",
				Steps: []Step{
					{Action: ActionClean},
				},
			},
		},
	}
	s.Normalize()
	return s
}

// ConsistencySuite returns the interface consistency suite: one executable
// pulling in unix, str, and stdlib modules together, where a CRC mismatch
// between compiled interfaces would fail the build or the run.
func ConsistencySuite() *Suite {
	s := &Suite{
		Name:          SuiteConsistency,
		Label:         "CRC consistency tests",
		Banner:        "=== Dune Interface Consistency Tests ===",
		TempPrefix:    "dune_cmi_",
		ArchSensitive: true,
		ProjectFiles: []FixtureFile{
			{Path: DuneProjectFile, Content: DefaultDuneProject},
		},
		Scenarios: []Scenario{
			{
				Name:      "Multi-module CRC consistency",
				FailLabel: "CRC consistency",
				Files: []FixtureFile{
					{
						Path: "consistency/dune",
						Content: `(executable
 (name test_consistency)
 (libraries unix str))`,
					},
					{
						Path: "consistency/test_consistency.ml",
						Content: `(* Uses multiple stdlib modules - CRC mismatch would fail here *)
let () =
  (* Unix module *)
  let _ = Unix.getpid () in
  (* Str module *)
  let re = Str.regexp "test" in
  let _ = Str.string_match re "test" 0 in
  (* Stdlib *)
  let _ = List.map (fun x -> x + 1) [1; 2; 3] in
  print_endline "Consistency check passed"
`,
					},
				},
				Steps: []Step{
					{Action: ActionBuild, Target: "consistency/test_consistency.exe"},
					{Action: ActionRun, Target: "./_build/default/consistency/test_consistency.exe", Expect: "Consistency check passed"},
				},
			},
		},
	}
	s.Normalize()
	return s
}

// Builtins returns fresh copies of the builtin suites in run order.
func Builtins() []*Suite {
	return []*Suite{BuildSuite(), ConsistencySuite()}
}
