package main

func runBankCommand(command string, args []string) {
	switch command {
	case "funds":
		requireArgs(args, 1, "funds <address>")
		doCall("bank_balance", map[string]interface{}{"address": args[0]})
	case "send":
		requireArgs(args, 3, "send <from> <to> <amount>")
		doCall("bank_transfer", map[string]interface{}{
			"from":   args[0],
			"to":     args[1],
			"amount": args[2],
		})
	case "fund":
		requireArgs(args, 3, "fund <caller> <to> <amount>")
		doCall("bank_mint", map[string]interface{}{
			"caller": args[0],
			"to":     args[1],
			"amount": args[2],
		})
	}
}

func runSystemCommand(command string, args []string) {
	switch command {
	case "pause":
		requireArgs(args, 2, "pause <caller> <module>")
		doCall("system_pause", map[string]interface{}{"caller": args[0], "module": args[1]})
	case "resume":
		requireArgs(args, 2, "resume <caller> <module>")
		doCall("system_resume", map[string]interface{}{"caller": args[0], "module": args[1]})
	case "pauses":
		doCall("system_pauses", nil)
	case "grant-role":
		requireArgs(args, 3, "grant-role <caller> <role> <address>")
		doCall("system_grantRole", map[string]interface{}{
			"caller": args[0], "role": args[1], "address": args[2],
		})
	case "revoke-role":
		requireArgs(args, 3, "revoke-role <caller> <role> <address>")
		doCall("system_revokeRole", map[string]interface{}{
			"caller": args[0], "role": args[1], "address": args[2],
		})
	case "role-members":
		requireArgs(args, 1, "role-members <role>")
		doCall("system_roleMembers", map[string]interface{}{"role": args[0]})
	}
}

func runEventsCommand(args []string) {
	params := map[string]interface{}{}
	if len(args) > 0 {
		params["cursor"] = mustUint(args[0])
	}
	if len(args) > 1 {
		params["limit"] = mustUint(args[1])
	}
	if len(params) == 0 {
		doCall("events_list", nil)
		return
	}
	doCall("events_list", params)
}
