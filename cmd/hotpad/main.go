package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ %v\n", err)
		os.Exit(1)
	}
}

func printBanner() {
	banner := `
 _   _       _   ____                 _                 ____           _ 
| | | | ___ | |_|  _ \ __ _ _ __   __| | ___  _ __ ___ |  _ \ __ _  __| |
| |_| |/ _ \| __| |_) / _' | '_ \ / _' |/ _ \| '_ ' _ \| |_) / _' |/ _' |
|  _  | (_) | |_|  _ < (_| | | | | (_| | (_) | | | | | |  __/ (_| | (_| |
|_| |_|\___/ \__|_| \_\__,_|_| |_|\__,_|\___/|_| |_| |_|_|   \__,_|\__,_|

           One hotkey, many sounds
`
	fmt.Println(banner)
}
