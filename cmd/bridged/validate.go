package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hostbridge/wasm-bridge/engine"
	"github.com/hostbridge/wasm-bridge/hostapi"
	"github.com/hostbridge/wasm-bridge/registry"
)

var validateCmd = &cobra.Command{
	Use:   "validate [app.wasm]",
	Short: "Check the host surface against the registry, optionally a module too",
	Long: `Bind the full dispatch surface and validate it against the embedded
registry: every catalogued function bound at its expanded wire signature,
no extras, no duplicates. A probe module importing the whole surface is
then instantiated so wazero's own type checks run as well.

With a module argument, the module is loaded and instantiated once against
the surface, catching missing or mistyped imports before deployment.`,
	Args: cobra.MaximumNArgs(1),
	Run:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	ctx := context.Background()

	cat, err := registry.Default()
	if err != nil {
		fatal(err)
	}
	funcs, err := hostapi.Bind(cat, nil)
	if err != nil {
		fatal(err)
	}
	fmt.Printf("Registry: %d functions, %d import names, %d wire modules\n",
		cat.Len(), cat.NameCount(), len(cat.Modules()))

	if err := registry.Validate(cat, funcs); err != nil {
		fatal(err)
	}
	fmt.Println("Bindings: ok")

	eng, err := engine.NewWazeroEngine(ctx)
	if err != nil {
		fatal(err)
	}
	defer eng.Close(ctx)
	if err := eng.RegisterHost(ctx, funcs); err != nil {
		fatal(err)
	}

	probe, err := eng.LoadModule(ctx, registry.BuildProbe(cat))
	if err != nil {
		fatal(fmt.Errorf("probe load: %w", err))
	}
	inst, err := probe.Instantiate(ctx)
	if err != nil {
		fatal(fmt.Errorf("probe instantiation: %w", err))
	}
	inst.Close(ctx)
	fmt.Println("Probe instantiation: ok")

	if len(args) == 0 {
		return
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		fatal(fmt.Errorf("read module: %w", err))
	}
	module, err := eng.LoadModule(ctx, data)
	if err != nil {
		fatal(fmt.Errorf("load module: %w", err))
	}
	fmt.Printf("Module: %s\n", args[0])
	if entry := module.EntryPoint(); entry != "" {
		fmt.Printf("  entry point: %s\n", entry)
	} else {
		fmt.Println("  entry point: none (no routes will be registered)")
	}

	appInst, err := module.Instantiate(ctx)
	if err != nil {
		fatal(fmt.Errorf("instantiate module: %w", err))
	}
	appInst.Close(ctx)
	fmt.Println("  instantiation: ok")
}
