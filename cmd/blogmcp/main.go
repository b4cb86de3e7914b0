package main

import (
	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "blogmcp"}

	root.AddCommand(serveCMD(), apiCMD(), ingestCMD(), migrateCMD())
	_ = root.Execute()
}
