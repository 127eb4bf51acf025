package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// holdingsCmd represents the holdings command
var holdingsCmd = &cobra.Command{
	Use:   "holdings",
	Short: "Print the triangles and rewards of your account",
	Run: func(cmd *cobra.Command, args []string) {
		privateKey, err := loadPrivateKey()
		if err != nil {
			log.Fatal(err)
		}
		account := privateKey.Address()

		var holdings struct {
			Count     int     `json:"count"`
			TotalArea float64 `json:"total_area"`
			Assets    []struct {
				Hash string  `json:"hash"`
				Area float64 `json:"area"`
			} `json:"assets"`
		}
		if err := get(fmt.Sprintf("%s/v1/assets/owner/%s", url, account), &holdings); err != nil {
			log.Fatal(err)
		}

		var rewards struct {
			Balance uint64 `json:"balance"`
		}
		if err := get(fmt.Sprintf("%s/v1/rewards/%s", url, account), &rewards); err != nil {
			log.Fatal(err)
		}

		fmt.Println("For Account:", account)
		fmt.Printf("Rewards: %d\n", rewards.Balance)
		fmt.Printf("Assets: %d  Area: %g\n", holdings.Count, holdings.TotalArea)
		for _, asset := range holdings.Assets {
			fmt.Printf("  %s  %g\n", asset.Hash, asset.Area)
		}
	},
}

func init() {
	rootCmd.AddCommand(holdingsCmd)
}
