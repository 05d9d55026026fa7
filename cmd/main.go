// FilePath: cmd/main.go
package main

import (
	"fmt"
	"log"
	"os"

	nuts "github.com/vaudience/go-nuts"

	"github.com/residential-power/outagewatch/internal/config"
	_ "github.com/residential-power/outagewatch/internal/docs"
	"github.com/residential-power/outagewatch/internal/server"
)

func main() {
	DrawLogo()
	nuts.InitVersion()
	nuts.L.Infof("[Main] Starting outagewatch v%s", nuts.GetVersion())

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	srv := server.New(cfg)
	if err := srv.Start(); err != nil {
		nuts.L.Errorf("[Main] Server error: %v", err)
		os.Exit(1)
	}
}

func DrawLogo() {
	fmt.Println()
	lines := []string{
		"  ____        __                  _       __         __       __  ",
		" / __ \\__ __ / /____ ___ ____     | |     / /__ _ ___ / /  ____/ /  ",
		"/ /_/ / // // __/ _ `/ _ `/ -_)    | | /| / / _ `/ __/ _ \\/ __/ _ \\ ",
		"\\____/\\_,_/ \\__/\\_,_/\\_, /\\__/     |_|/|_/\\_,_/\\__/_//_/\\__/_//_/ ",
		"                    /___/",
		"..........................................  " + nuts.GetVersion(),
	}

	for _, line := range lines {
		fmt.Println(line)
	}
}
