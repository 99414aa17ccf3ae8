package main

import (
	"github.com/sirupsen/logrus"

	"github.com/beamit-app/beamit/cmd"
	"github.com/beamit-app/beamit/internal/logging"
)

func main() {
	logging.Init(logrus.WarnLevel)
	cmd.Execute()
}
