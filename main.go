package main

import (
	"flag"
	"log"

	"leadbot/bot"
)

func main() {
	configPath := flag.String("config", "", "path to the yaml config file")
	flag.Parse()

	log.SetFlags(log.Ltime | log.Lshortfile)
	log.Println("Initializing...")

	config, err := bot.LoadConfig(*configPath)
	if err != nil {
		log.Fatalln("Unable to load config: ", err)
	}

	leadBot, err := bot.NewLeadBot(config)
	if err != nil {
		log.Fatalln("Unable to start: ", err)
	}

	if err := leadBot.Run(); err != nil {
		log.Fatalln(err)
	}
}
