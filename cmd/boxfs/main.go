package main

import (
	"os"

	"github.com/sirupsen/logrus"
)

func main() {
	if err := Execute(); err != nil {
		logrus.Fatalf("error executing command: %v", err)
		os.Exit(1)
	}
}
