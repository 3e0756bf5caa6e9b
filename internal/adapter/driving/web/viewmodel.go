package web

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	vm "github.com/ericfisherdev/fwchecks/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/fwchecks/internal/application"
	"github.com/ericfisherdev/fwchecks/internal/domain/model"
)

const shortSHALength = 7

// toChangeRowViewModel converts a tracked change to a dashboard row.
// schedule may be nil when the change has not been polled yet.
func toChangeRowViewModel(c model.TrackedChange, schedule *application.ScheduleInfo) vm.ChangeRowViewModel {
	sha := c.Ref.CommitHash
	if len(sha) > shortSHALength {
		sha = sha[:shortSHALength]
	}

	polled := "never"
	if !c.PolledAt.IsZero() {
		polled = c.PolledAt.UTC().Format(time.RFC3339)
	}

	tier := "new"
	if schedule != nil {
		tier = schedule.Tier.String()
	}

	return vm.ChangeRowViewModel{
		Change:     c.Ref.ChangeNumber,
		Patchset:   c.Ref.Patchset,
		Project:    c.Ref.Project,
		ShortSHA:   sha,
		CIStatus:   string(c.CIStatus),
		Tier:       tier,
		LastSeen:   c.LastSeenAt.UTC().Format(time.RFC3339),
		Polled:     polled,
		DetailPath: changePath(c.Ref.ChangeNumber, c.Ref.Patchset),
	}
}

// toChangeDetailViewModel converts a stored snapshot into the detail page model.
func toChangeDetailViewModel(summary *application.ChangeSummary, schedule *application.ScheduleInfo) vm.ChangeDetailViewModel {
	row := toChangeRowViewModel(summary.Change, schedule)
	row.CIStatus = string(summary.CIStatus)

	latest := make(map[string]bool)
	for _, run := range application.LatestAttempts(summary.Runs) {
		latest[run.ExternalID] = true
	}

	runs := make([]vm.RunViewModel, 0, len(summary.Runs))
	for _, run := range summary.Runs {
		runs = append(runs, toRunViewModel(run, latest[run.ExternalID]))
	}

	return vm.ChangeDetailViewModel{
		ChangeRowViewModel: row,
		Runs:               runs,
		RefreshPath:        row.DetailPath + "/refresh",
	}
}

func toRunViewModel(run model.CheckRun, isLatest bool) vm.RunViewModel {
	v := vm.RunViewModel{
		ExternalID:        run.ExternalID,
		CheckName:         run.CheckName,
		Attempt:           run.Attempt,
		IsLatest:          isLatest,
		Status:            strings.ToLower(string(run.Status)),
		StatusDescription: run.StatusDescription,
		StatusLink:        run.StatusLink,
		CheckLink:         run.CheckLink,
		Started:           "not started",
		Results:           make([]vm.ResultViewModel, 0, len(run.Results)),
	}

	if run.StartedAt != nil {
		v.Started = run.StartedAt.UTC().Format(time.RFC3339)
		if run.FinishedAt != nil {
			v.Duration = run.FinishedAt.Sub(*run.StartedAt).String()
		}
	}

	for _, res := range run.Results {
		tags := make([]vm.TagViewModel, 0, len(res.Tags))
		for _, tag := range res.Tags {
			tags = append(tags, vm.TagViewModel{Name: tag.Name, Color: strings.ToLower(string(tag.Color))})
		}
		v.Results = append(v.Results, vm.ResultViewModel{
			Name:        res.Name,
			Category:    strings.ToLower(string(res.Category)),
			SummaryHTML: RenderMarkdown(res.Summary),
			Tags:        tags,
			Link:        res.Link,
		})
	}

	return v
}

func changePath(changeNumber, patchset string) string {
	return fmt.Sprintf("/app/changes/%s/%s", url.PathEscape(changeNumber), url.PathEscape(patchset))
}
