package main

import (
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/arzzra/soft_conference/pkg/conference"
	"github.com/arzzra/soft_conference/pkg/scheduler"
)

func printConferences(w io.Writer, infos []*conference.Info) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"URI", "Subject", "Start", "Min", "State", "Seq", "Participants"})
	table.SetAutoWrapText(false)
	for _, info := range infos {
		start := ""
		if !info.DateTime().IsZero() {
			start = info.DateTime().Format(time.RFC3339)
		}
		table.Append([]string{
			info.URI().URIOnly(),
			info.Subject(),
			start,
			strconv.FormatUint(uint64(info.Duration()), 10),
			info.State().String(),
			strconv.FormatUint(uint64(info.IcsSequence()), 10),
			strconv.Itoa(info.ParticipantCount()),
		})
	}
	table.Render()
}

func printResults(w io.Writer, results []scheduler.InvitationResult) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Recipient", "Method", "Result"})
	table.SetAutoWrapText(false)
	for _, r := range results {
		method := conference.MethodRequest
		if r.Cancel {
			method = conference.MethodCancel
		}
		result := "delivered"
		if r.Err != nil {
			result = r.Err.Error()
		}
		table.Append([]string{r.Recipient.URIOnly(), method, result})
	}
	table.Render()
}
