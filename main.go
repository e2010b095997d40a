// The main package for the jobradar executable.
package main

import (
	"github.com/jobradar/jobradar/cmd"
)

func main() {
	cmd.Execute()
}
