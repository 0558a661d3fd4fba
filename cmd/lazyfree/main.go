package main

import (
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func main() {
	v := viper.New()
	root := &cobra.Command{
		Use:   "lazyfree",
		Short: "Exercise background memory reclamation of an in-memory store",
	}
	root.AddCommand(Bench(v))
	if err := root.Execute(); err != nil {
		log.Fatal(err)
	}
}
