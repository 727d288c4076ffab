package main

func runAssetsRegister(args []string) {
	requireArgs(args, 4, "register <caller> <symbol> <name> <maxShares> [metadataURI]")
	params := map[string]interface{}{
		"caller":    args[0],
		"symbol":    args[1],
		"name":      args[2],
		"maxShares": args[3],
	}
	if len(args) > 4 {
		params["metadataURI"] = args[4]
	}
	doCall("assets_register", params)
}

func runAssetsSetFlag(args []string, method string) {
	requireArgs(args, 3, "verify|activate <caller> <assetId> <true|false>")
	doCall(method, map[string]interface{}{
		"caller":  args[0],
		"assetId": mustUint(args[1]),
		"value":   mustBool(args[2]),
	})
}

func runMarketCommand(command string, args []string) {
	switch command {
	case "list":
		requireArgs(args, 4, "list <seller> <assetId> <shares> <pricePerShare>")
		doCall("market_list", map[string]interface{}{
			"seller":        args[0],
			"assetId":       mustUint(args[1]),
			"shares":        args[2],
			"pricePerShare": args[3],
		})
	case "buy":
		requireArgs(args, 4, "buy <buyer> <listingId> <shares> <offeredFunds>")
		doCall("market_buy", map[string]interface{}{
			"buyer":        args[0],
			"listingId":    mustUint(args[1]),
			"shares":       args[2],
			"offeredFunds": args[3],
		})
	case "cancel":
		requireArgs(args, 2, "cancel <caller> <listingId>")
		doCall("market_cancel", map[string]interface{}{
			"caller":    args[0],
			"listingId": mustUint(args[1]),
		})
	case "listing":
		requireArgs(args, 1, "listing <listingId>")
		doCall("market_get", map[string]interface{}{"listingId": mustUint(args[0])})
	case "listings":
		params := map[string]interface{}{}
		if len(args) > 0 {
			params["assetId"] = mustUint(args[0])
		}
		doCall("market_openListings", params)
	case "set-fee":
		requireArgs(args, 3, "set-fee <caller> <feeBps> <recipient>")
		doCall("market_setFeePolicy", map[string]interface{}{
			"caller":    args[0],
			"feeBps":    mustUint(args[1]),
			"recipient": args[2],
		})
	case "fee-policy":
		doCall("market_feePolicy", nil)
	}
}
