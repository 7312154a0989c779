package main

import (
	"bitbucket.org/aleksas/scribe/internal/app/transcribe"
	"github.com/labstack/gommon/color"
)

func main() {
	printBanner()
	transcribe.Execute()
}

var (
	version string
)

func printBanner() {
	banner := `
   _____ __________  ________  ______
  / ___// ____/ __ \/  _/ __ )/ ____/
  \__ \/ /   / /_/ // // __  / __/
 ___/ / /___/ _, _// // /_/ / /___
/____/\____/_/ |_/___/_____/_____/  v: %s

%s
________________________________________________________

`
	cl := color.New()
	cl.Printf(banner, cl.Red(version), cl.Green("bitbucket.org/aleksas/scribe"))
}
