// Package dispatcher routes inbound Telegram updates.
//
// A chat message is recorded in the user's ACTIVE conversation and then
// answered: slash commands go through the command table, anything else gets a
// fixed acknowledgment. A callback press is answered first and then routed
// through the action table on its "action:<token>" data.
//
// Storage and validation errors are returned to the caller. Failed replies
// are logged with the update, chat and conversation ids, counted in
// d2p_delivery_failures_total, and otherwise ignored.
package dispatcher
