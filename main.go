package main

import (
	"fmt"

	"github.com/bayline/shop-sync-service/cmd"
)

func main() {
	if err := cmd.Run(); err != nil {
		fmt.Println(err.Error())
		return
	}
}
