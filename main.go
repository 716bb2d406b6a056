package main

import "github.com/CharlotteKetzenberg/DistanceVectorRouting/cmd"

func main() {
	cmd.Execute()
}
