// Command escoredump decodes ESP32-family crash-dump envelopes and
// synthesizes gdb-loadable ELF core files from them.
package main

import (
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"escoredump/internal/config"
	"escoredump/internal/coredump"
	"escoredump/internal/coredump/target"
	glog "escoredump/internal/log"
	"escoredump/internal/ui/inspect"
)

var (
	verbose  bool
	appELF   string
	outPath  string
	tempDir  string
)

func main() {
	cfg := config.FromEnvironment()

	rootCmd := &cobra.Command{
		Use:   "escoredump",
		Short: "Decode ESP32 crash-dump envelopes into gdb-loadable ELF core files",
		Long: `escoredump parses the versioned crash-dump envelope an ESP32-family
device emits on panic (base64, raw binary, or a pre-built ELF payload),
validates its checksum, and synthesizes an ELF core file a debugger can
load alongside the application image.

Examples:
  escoredump decode dump.bin --chip esp32 -o core.elf
  escoredump inspect dump.bin --chip esp32s3`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			glog.Init(verbose || cfg.Verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose debug output")
	rootCmd.PersistentFlags().StringVar(&appELF, "app-elf", cfg.DefaultAppImage, "application image ELF (for ELF pass-through version checks)")
	rootCmd.PersistentFlags().StringVar(&tempDir, "tmpdir", cfg.TempDir, "scratch directory for intermediate files")

	decodeCmd := &cobra.Command{
		Use:   "decode <corefile> --chip <target>",
		Short: "Synthesize an ELF core file from a crash-dump envelope",
		Args:  cobra.ExactArgs(1),
		RunE:  runDecode,
	}
	decodeCmd.Flags().StringVar(&chipFlag, "chip", "", "chip target (esp32, esp32s3, esp32c3, ...)")
	decodeCmd.Flags().StringVarP(&outPath, "out", "o", "core.elf", "output core file path")
	rootCmd.AddCommand(decodeCmd)

	inspectCmd := &cobra.Command{
		Use:   "inspect <corefile> --chip <target>",
		Short: "Browse recovered tasks interactively",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}
	inspectCmd.Flags().StringVar(&chipFlag, "chip", "", "chip target (esp32, esp32s3, esp32c3, ...)")
	rootCmd.AddCommand(inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var chipFlag string

func loadEnvelope(path string) (*coredump.Envelope, target.Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, target.Profile{}, err
	}
	env, err := coredump.Load(data)
	if err != nil {
		return nil, target.Profile{}, err
	}
	if err := env.Validate(); err != nil {
		return nil, target.Profile{}, err
	}

	name := chipFlag
	if name == "" {
		if tag, ok := coredump.ChipTarget(env.Version.ChipVer()); ok {
			name = tag
		}
	}
	profile, ok := target.Lookup(name)
	if !ok {
		return nil, target.Profile{}, fmt.Errorf("unknown or unspecified chip target %q: pass --chip", name)
	}
	return env, profile, nil
}

func runDecode(cmd *cobra.Command, args []string) error {
	env, profile, err := loadEnvelope(args[0])
	if err != nil {
		return err
	}

	var appImage []byte
	if appELF != "" {
		appImage, err = os.ReadFile(appELF)
		if err != nil {
			return fmt.Errorf("read app elf: %w", err)
		}
	}

	core, err := coredump.Synthesize(env, profile, coredump.SynthOptions{AppImage: appImage})
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, core, 0o644); err != nil {
		return fmt.Errorf("write core file: %w", err)
	}
	fmt.Printf("wrote %s (%d bytes), target %s\n", outPath, len(core), profile.Name)
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	env, profile, err := loadEnvelope(args[0])
	if err != nil {
		return err
	}

	reports, err := coredump.ListTasks(env, profile)
	if err != nil {
		return err
	}

	summaries := make([]inspect.TaskSummary, len(reports))
	for i, r := range reports {
		summaries[i] = inspect.TaskSummary{
			Index:      r.Index,
			Name:       fmt.Sprintf("task[%d]", r.Index),
			TCBAddr:    r.TCBAddr,
			StackStart: r.StackStart,
			StackEnd:   r.StackEnd,
			Corrupted:  r.Corrupted,
			Regs:       r.Regs,
		}
	}

	p := tea.NewProgram(inspect.NewModel(summaries), tea.WithAltScreen())
	_, err = p.Run()
	return err
}
