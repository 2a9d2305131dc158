// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianSubstrate/services/substrate/quarantine"
)

var approveKeyFile string

// approveCmd mints a quarantine clearance token.
//
// # Description
//
// Computes the clearance token for a specific fault trace id using the
// approval key. The token is bound to that incident: tokens minted for
// earlier quarantine entries are rejected by the server. Run this on the
// machine holding the key, out of band from the quarantined service.
//
// # Examples
//
//	substrate approve 6f1c... --key-file /etc/aleutian/approval.key
//	curl -X POST http://localhost:8086/v1/substrate/quarantine/clear \
//	  -d "{\"token\": \"$(substrate approve 6f1c... -k approval.key)\"}"
var approveCmd = &cobra.Command{
	Use:   "approve <fault-trace-id>",
	Short: "Mint a quarantine clearance token",
	Args:  cobra.ExactArgs(1),
	RunE:  runApproveCommand,
}

func init() {
	approveCmd.Flags().StringVarP(&approveKeyFile, "key-file", "k", "",
		"Path to the approval key file (required)")
	_ = approveCmd.MarkFlagRequired("key-file")
}

func runApproveCommand(cmd *cobra.Command, args []string) error {
	approval, err := quarantine.LoadApprovalKey(approveKeyFile)
	if err != nil {
		return fmt.Errorf("loading approval key: %w", err)
	}
	token, err := approval.Sign(args[0])
	if err != nil {
		return fmt.Errorf("signing fault trace id: %w", err)
	}
	fmt.Println(hex.EncodeToString(token))
	return nil
}
