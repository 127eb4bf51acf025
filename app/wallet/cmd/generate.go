package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/siertrichain/siertrichain/foundation/blockchain/signature"
	"github.com/spf13/cobra"
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate new key pair",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := crypto.GenerateKey()
		if err != nil {
			log.Fatal(err)
		}

		if err := os.MkdirAll(accountPath, 0755); err != nil {
			log.Fatal(err)
		}

		path := getPrivateKeyPath()
		if _, err := os.Stat(path); err == nil {
			log.Fatalf("key file %s already exists", path)
		}

		if err := crypto.SaveECDSA(path, privateKey); err != nil {
			log.Fatal(err)
		}

		fmt.Println(signature.PublicKeyToAddress(privateKey.PublicKey))
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
