// Command gptfixup writes disk images to devices and repairs their GPT to fit the device.
package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
