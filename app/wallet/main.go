package main

import "github.com/siertrichain/siertrichain/app/wallet/cmd"

func main() {
	cmd.Execute()
}
