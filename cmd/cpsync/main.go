package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/me/cpsync/internal/cli"
	"github.com/me/cpsync/pkg/model"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		if errors.Is(err, model.ErrInterrupted) {
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
