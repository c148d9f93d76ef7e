package commands

import (
	"fmt"

	"github.com/mosaicnetworks/blocknet/src/blocknet"
	"github.com/spf13/cobra"
)

var keygenDataDir string

// NewKeygenCmd produces a KeygenCmd which creates the key of the node
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Create the key of the node",
		RunE:  keygen,
	}

	AddKeygenFlags(cmd)

	return cmd
}

//AddKeygenFlags adds flags to the keygen command
func AddKeygenFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&keygenDataDir, "datadir", _config.Blocknet.DataDir, "Directory where the private key will be written")
}

func keygen(cmd *cobra.Command, args []string) error {
	id, err := blocknet.Keygen(keygenDataDir)
	if err != nil {
		return err
	}

	fmt.Printf("Your private key has been saved to: %s\n", keygenDataDir)
	fmt.Printf("Node ID: %s\n", id)

	return nil
}
