package main

import (
	"fmt"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

var linkCmd = &cobra.Command{
	Use:   "link <eobID> <stmtID>",
	Short: "Link an EOB to its statement and demote the statement",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		eobID, err := strconv.Atoi(args[0])
		if err != nil {
			return eris.Wrapf(err, "cmd: bad eob id %q", args[0])
		}
		stmtID, err := strconv.Atoi(args[1])
		if err != nil {
			return eris.Wrapf(err, "cmd: bad statement id %q", args[1])
		}

		l, err := openLedger(ctx)
		if err != nil {
			return err
		}
		defer l.Close()

		eob, err := l.GetRecord(ctx, eobID)
		if err != nil {
			return err
		}
		if eob == nil {
			return eris.Errorf("cmd: record #%d not found", eobID)
		}
		if !eob.DocumentType.IsEOB() {
			return eris.Errorf("cmd: record #%d is a %s, not an EOB", eobID, eob.DocumentType)
		}

		linked, err := l.LinkRecords(ctx, eobID, stmtID)
		if err != nil {
			return err
		}
		if !linked {
			return eris.Errorf("cmd: could not link #%d to #%d", eobID, stmtID)
		}
		fmt.Printf("Linked EOB #%d to statement #%d.\n", eobID, stmtID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}
