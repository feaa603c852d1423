package confirm

import (
	"fmt"

	"github.com/rust-lang/sync-team/internal/plan"
	"github.com/rust-lang/sync-team/internal/zulip"
)

// ZulipPublisher posts gate outcomes to a Zulip stream topic. The
// confirmation channel posts even when the zulip service itself runs
// in dry-run: review traffic is not a platform write.
type ZulipPublisher struct {
	API     *zulip.API
	Stream  string
	Topic   string
	BaseURL string
}

func (p *ZulipPublisher) PublishProposal(diffs []plan.Diff, hash string) error {
	body := RenderApprovalMessage(diffs, hash, p.BaseURL)
	return p.API.PostMessage(p.Stream, p.Topic, body)
}

func (p *ZulipPublisher) PublishStale(diffs []plan.Diff, hash string) error {
	body := "🚨 **The diff changed since the approval, please approve again!**\n\n" +
		RenderApprovalMessage(diffs, hash, p.BaseURL)
	return p.API.PostMessage(p.Stream, p.Topic, body)
}

func (p *ZulipPublisher) PublishApplied(hash, approver string) error {
	body := fmt.Sprintf("Applied diff `%s`\nApproved by: `%s`", hash, approver)
	return p.API.PostMessage(p.Stream, p.Topic, body)
}
