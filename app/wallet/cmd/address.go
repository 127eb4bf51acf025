package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// addressCmd represents the address command
var addressCmd = &cobra.Command{
	Use:   "address",
	Short: "Print address for the specific account",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := loadPrivateKey()
		if err != nil {
			log.Fatal(err)
		}
		fmt.Println(privateKey.Address())
	},
}

func init() {
	rootCmd.AddCommand(addressCmd)
}
