package main

import "strings"

func runRevenueCommand(command string, args []string) {
	switch command {
	case "deposit":
		requireArgs(args, 3, "deposit <from> <assetId> <amount>")
		doCall("revenue_deposit", map[string]interface{}{
			"from":    args[0],
			"assetId": mustUint(args[1]),
			"amount":  args[2],
		})
	case "claim":
		requireArgs(args, 2, "claim <holder> <assetId>")
		doCall("revenue_claim", map[string]interface{}{
			"holder":  args[0],
			"assetId": mustUint(args[1]),
		})
	case "claim-batch":
		requireArgs(args, 2, "claim-batch <holder> <assetId>[,<assetId>...]")
		ids := []uint64{}
		for _, part := range strings.Split(args[1], ",") {
			ids = append(ids, mustUint(part))
		}
		doCall("revenue_claimBatch", map[string]interface{}{
			"holder":   args[0],
			"assetIds": ids,
		})
	case "claimable":
		requireArgs(args, 2, "claimable <holder> <assetId>")
		doCall("revenue_claimable", map[string]interface{}{
			"holder":  args[0],
			"assetId": mustUint(args[1]),
		})
	case "pool":
		requireArgs(args, 1, "pool <assetId>")
		doCall("revenue_pool", map[string]interface{}{"assetId": mustUint(args[0])})
	case "emergency-withdraw":
		requireArgs(args, 3, "emergency-withdraw <caller> <assetId> <recipient>")
		doCall("revenue_emergencyWithdraw", map[string]interface{}{
			"caller":    args[0],
			"assetId":   mustUint(args[1]),
			"recipient": args[2],
		})
	case "set-revenue-policy":
		requireArgs(args, 2, "set-revenue-policy <caller> <minDepositIntervalSeconds>")
		doCall("revenue_setPolicy", map[string]interface{}{
			"caller":                    args[0],
			"minDepositIntervalSeconds": mustUint(args[1]),
		})
	}
}
