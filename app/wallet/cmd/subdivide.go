package cmd

import (
	"fmt"
	"log"
	"time"

	"github.com/siertrichain/siertrichain/foundation/blockchain/database"
	"github.com/spf13/cobra"
)

var (
	fee   uint64
	nonce uint64
)

// subdivideCmd represents the subdivide command
var subdivideCmd = &cobra.Command{
	Use:   "subdivide <asset-hash>",
	Short: "Split an owned triangle into its three corner children",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := loadPrivateKey()
		if err != nil {
			log.Fatal(err)
		}

		parent, err := queryAsset(args[0])
		if err != nil {
			log.Fatal(err)
		}

		if !database.AccountID(parent.Owner).Equals(database.AccountID(privateKey.Address())) {
			log.Fatalf("asset %s is owned by %s", args[0], parent.Owner)
		}

		tx, err := database.NewSubdivisionTx(parent, fee, txNonce())
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
		for _, child := range signed.Children {
			fmt.Println("  child:", child.Hash())
		}
	},
}

func init() {
	rootCmd.AddCommand(subdivideCmd)
	subdivideCmd.Flags().Uint64VarP(&fee, "fee", "f", 0, "Fee offered for priority.")
	subdivideCmd.Flags().Uint64VarP(&nonce, "nonce", "n", 0, "Nonce of the transaction, defaults to the current time.")
}

// txNonce returns the nonce flag or a time based nonce.
func txNonce() uint64 {
	if nonce != 0 {
		return nonce
	}
	return uint64(time.Now().UnixNano())
}
