package commands

import (
	"github.com/spf13/cobra"
)

var (
	_config = NewDefaultCLIConfig()
)

//RootCmd is the root command for blocknet
var RootCmd = &cobra.Command{
	Use:              "blocknet",
	Short:            "blocknet peer-to-peer node",
	TraverseChildren: true,
}
