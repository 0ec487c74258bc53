package intake

import (
	"fmt"
	"strings"

	"github.com/civicdesk/grievance-service/internal/domain"
)

const menu = "What would you like to do?\n" +
	"1. File a complaint: describe the problem in a sentence or two.\n" +
	"2. Check a complaint: send its id, for example CMP-1A2B3C4D.\n" +
	"3. Withdraw a complaint: send withdraw <complaint id> <secret>.\n" +
	"Send cancel at any time to start over."

const (
	replyGreeting           = "Hello! I can help you report civic problems in your area.\n" + menu
	replyFallback           = "Sorry, I didn't understand that.\n" + menu
	replyCancelled          = "Cancelled. Anything you had typed so far was discarded.\n" + menu
	replyAskDescription     = "Please describe the problem: what is wrong, and since when."
	replyDescriptionAgain   = "I couldn't make out a complaint from that. Please describe the problem in a full sentence."
	replyAskLocationAgain   = "Please send the location of the problem: street, landmark or area."
	replyAskComplaintID     = "Please send your complaint id. It looks like CMP-1A2B3C4D."
	replyComplaintIDAgain   = "That doesn't look like a complaint id. It looks like CMP-1A2B3C4D, or send cancel."
	replyNotFound           = "Complaint not found. Please check the id and try again."
	replyStoreUnavailable   = "Sorry, we couldn't reach our records just now. Please send that again in a moment."
	replyWithdrawUsage      = "To withdraw a complaint send: withdraw <complaint id> <secret>"
	replyIncorrectSecret    = "Incorrect secret. The complaint was not changed."
	replyTooManyAttempts    = "Too many failed attempts for this complaint. Please try again later."
	replyServiceInterrupted = "Sorry, something went wrong on our side. Please send that again."
)

func replyAckAndAskLocation(out domain.ClassifierOutput) string {
	return fmt.Sprintf("Got it. This looks like a %s issue with %s priority.\n"+
		"Where is it? Send the street, landmark or area.", out.Category.Label(), out.Priority)
}

func replyAskSecret(rules Rules) string {
	return fmt.Sprintf("Thanks. Now choose a secret of at least %d characters. "+
		"You will need it to change or withdraw this complaint, so keep it safe.", rules.MinSecretLength)
}

func replySecretLength(rules Rules) string {
	return fmt.Sprintf("Your secret must be between %d and %d characters long. Please choose another.",
		rules.MinSecretLength, rules.MaxSecretLength)
}

func replyCreated(c *domain.Complaint) string {
	return fmt.Sprintf("Your complaint has been registered.\nComplaint id: %s\n"+
		"Save this id together with your secret. Send the id at any time to check progress.", c.PublicID)
}

func replyWithdrawn(c *domain.Complaint) string {
	return fmt.Sprintf("Complaint %s has been withdrawn.", c.PublicID)
}

func replyClosed(ref string) string {
	return fmt.Sprintf("Complaint %s is already closed and can no longer be changed.", ref)
}

// renderStatus formats a complaint for a status reply.
func renderStatus(c *domain.Complaint) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Complaint %s\n", c.PublicID)
	fmt.Fprintf(&b, "Status: %s\n", c.Status)
	fmt.Fprintf(&b, "Category: %s, priority %s\n", c.Category.Label(), c.Priority)
	if c.Location != "" {
		fmt.Fprintf(&b, "Location: %s\n", c.Location)
	}
	fmt.Fprintf(&b, "Filed: %s\n", c.CreatedAt.Format("2 Jan 2006"))
	fmt.Fprintf(&b, "Last updated: %s", c.UpdatedAt.Format("2 Jan 2006 15:04"))
	if c.Classification != nil && c.Classification.EstimatedResolutionDays > 0 && !c.Status.Terminal() {
		fmt.Fprintf(&b, "\nExpected resolution: about %d days from filing", c.Classification.EstimatedResolutionDays)
	}
	return b.String()
}
