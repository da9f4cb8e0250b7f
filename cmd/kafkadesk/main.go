package main

import (
	"github.com/kafkadesk/kafkadesk/cmd/kafkadesk/commands"
)

func main() {
	commands.Execute()
}
