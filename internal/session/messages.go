package session

const commandList = "Available commands:\n" +
	"/set_token - Link your Jira token\n" +
	"/remove_token - Remove the stored token\n" +
	"/get_issue [KEY] - Show an issue\n" +
	"/worklog [days or date] - Work-log report for the recent period\n" +
	"/worklog_neuro [days or date] - Same report summarized by the language model\n" +
	"/transition KEY status - Move an issue to another status\n" +
	"/issues status [in PROJECT] - List issues in a status\n" +
	"/cancel - Abort the current step\n" +
	"/help - Show this help"

const (
	msgStart = "Hi! I'm a Jira work-log bot. " +
		"Link your Jira token with /set_token to get started.\n\n" + commandList

	msgTokenNotSet     = "❌ Token is not set. Use /set_token to link your Jira token."
	msgTokenAlreadySet = "You already have a token linked. " +
		"Use /remove_token to delete it, then /set_token to set a new one."
	msgTokenPrompt = "Please send your Jira personal access token.\n" +
		"You can create one in Jira under Profile -> Personal Access Tokens.\n\n" +
		"⚠️ The message with the token will be deleted where the chat allows it."
	msgTokenInvalid = "❌ Could not verify the token. Make sure that:\n" +
		"1. The token is typed correctly\n" +
		"2. You have access to Jira\n" +
		"3. The token has not expired\n\n" +
		"Send the token again or /cancel."
	msgTokenNotDeleted = "⚠️ I could not delete your message with the token. Please delete it yourself.\n" +
		"Next time send /set_token <token> as a command so the token is not left in the chat."
	msgTokenSaved      = "✅ Token saved!\nYou are signed in as: %s\n\nNow try /worklog or /get_issue."
	msgTokenRemoved    = "✅ Token removed.\nYou can set a new one with /set_token."
	msgNoTokenToRemove = "❌ You have no token set."

	msgIssuePrompt     = "Enter the issue key (for example PROJ-123):"
	msgIssueBadKey     = "❌ %q does not look like an issue key (for example PROJ-123)."
	msgIssueNotFound   = "❌ Issue %s was not found."
	msgIssueFailed     = "❌ Failed to get the issue: %v"
	msgAuthFailed      = "❌ Jira rejected your token. Check it, or replace it with /remove_token and /set_token."
	msgReportFailed    = "❌ Failed to build the report: %v"
	msgWorklogUsage    = "Usage: /worklog [days or date], for example /worklog 5 or /worklog last friday"
	msgNeuroProgress   = "Sending the work-log to the language model.\nThis may take a while..."
	msgNeuroFailed     = "❌ The language model failed: %v"
	msgNeuroOff        = "❌ Summaries are not available: no language model is configured."
	msgTransitionUsage = "Usage: /transition KEY status, for example /transition PROJ-1 In Progress"
	msgTransitionNone  = "❌ %s cannot move to %q. Available: %s"
	msgTransitionDone  = "✅ %s moved to %s."
	msgTransitionFail  = "❌ Failed to change the status: %v"
	msgIssuesUsage     = "Usage: /issues status [in PROJECT], for example /issues In Progress in PROJ"
	msgIssuesEmpty     = "No issues in status %q."
	msgIssuesFailed    = "❌ Failed to search issues: %v"
	msgCancelled       = "Cancelled."
	msgNothingToCancel = "Nothing to cancel."
	msgUnknown         = "I don't understand that. Send /help for the list of commands."
	msgInternal        = "❌ Something went wrong, please try again later."
)
