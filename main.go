package main

import "github.com/heuritech/gitlab-slack-notifier/cmd"

func main() {
	cmd.Execute()
}
