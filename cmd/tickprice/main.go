// Debug tool: print the sqrt ratio and price for one or more ticks.
//
//	go run ./cmd/tickprice 0 6932 -6932
package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/vitos/gridpool/internal/oracle"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: tickprice <tick> [tick ...]")
		os.Exit(1)
	}

	for _, arg := range os.Args[1:] {
		tick, err := strconv.Atoi(arg)
		if err != nil {
			fmt.Printf("Invalid tick %q: %v\n", arg, err)
			os.Exit(1)
		}

		sqrt, err := oracle.SqrtRatioAtTick(tick)
		if err != nil {
			fmt.Printf("tick %d: %v\n", tick, err)
			continue
		}
		price, err := oracle.PriceAtTick(tick, 18, 18)
		if err != nil {
			fmt.Printf("tick %d: %v\n", tick, err)
			continue
		}

		fmt.Printf("tick %d\n", tick)
		fmt.Printf("  sqrtPriceX96: %s\n", sqrt.String())
		fmt.Printf("  price:        %s\n", price.String())
	}
}
