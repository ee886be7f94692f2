// Package conversation provides the operation layer over the conversation store.
//
// # Manager
//
//	mgr := conversation.New(store, logger)
//
// Key operations:
//
//   - GetOrCreate(ctx, userID, username): Resolve the user's ACTIVE conversation
//   - AddMessage(ctx, req): Append a message, with optional model usage
//   - ListRecentMessages(ctx, id, limit): The latest messages, oldest first
//
// # Conversation Resolution
//
// When a message arrives:
//
//  1. Look up the user's ACTIVE conversation
//  2. If not found, insert a new one
//  3. If the insert collides with a concurrent one, look up again and return the winner
//
// The store's uniqueness guarantee, not the lookup, is what keeps a user to a
// single ACTIVE conversation.
package conversation
