// SPDX-License-Identifier: MPL-2.0

package main

import "github.com/isoload/isoload/cmd/isoload"

func main() {
	cmd.Execute()
}
