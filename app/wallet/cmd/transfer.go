package cmd

import (
	"fmt"
	"log"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	to   string
	memo string
)

// transferCmd represents the transfer command
var transferCmd = &cobra.Command{
	Use:   "transfer <asset-hash>",
	Short: "Move an owned triangle to a new owner",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := loadPrivateKey()
		if err != nil {
			log.Fatal(err)
		}

		newOwner, err := database.ToAccountID(to)
		if err != nil {
			log.Fatal(err)
		}
		sender := database.AccountID(privateKey.Address())

		tx, err := database.NewTransferTx(args[0], newOwner, sender, fee, txNonce(), memo)
		if err != nil {
			log.Fatal(err)
		}

		signed, err := tx.Sign(privateKey)
		if err != nil {
			log.Fatal(err)
		}

		hash, err := submitTx(signed)
		if err != nil {
			log.Fatal(err)
		}

		fmt.Println(hash)
	},
}

func init() {
	rootCmd.AddCommand(transferCmd)
	transferCmd.Flags().StringVarP(&to, "to", "t", "", "Address of the new owner.")
	transferCmd.MarkFlagRequired("to")
	transferCmd.Flags().StringVarP(&memo, "memo", "m", "", "Optional memo stored with the transfer.")
	transferCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee offered for priority.")
	transferCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Nonce of the transaction, defaults to the current time.")
}
