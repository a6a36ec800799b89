package main

import "speech-transcriber/cmd/transcriber"

func main() {
	transcriber.Execute()
}
