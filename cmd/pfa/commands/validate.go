package commands

import (
	"os"

	"github.com/fatih/color"
	"github.com/panyam/pfa/decl"
	"github.com/panyam/pfa/lib"
	"github.com/panyam/pfa/loader"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate <document...>",
	Short: "Reads and type checks PFA documents",
	Long: `The validate command reads one or more JSON or YAML documents, resolves
their type declarations and type checks every expression against the function
library. It does not run any engines.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		printDocs, _ := cmd.Flags().GetBool("print")

		pfaLoader := loader.NewLoader(nil, nil, lib.Default())
		ok := pfaLoader.LoadFilesAndValidate(os.Stdout, args...)
		if printDocs {
			for _, f := range args {
				// cached by the validation above
				res, err := pfaLoader.LoadFile(f)
				if err != nil || res.Config == nil {
					continue
				}
				decl.PPrint(os.Stdout, res.Config)
			}
		}
		if !ok {
			color.Red("Validation failed")
			os.Exit(1)
		}
		color.Green("%d document(s) valid", len(args))
	},
}

func init() {
	AddCommand(validateCmd)
	validateCmd.Flags().BoolP("print", "p", false, "Print each valid document with its inferred types")
}
