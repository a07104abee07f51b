// Package bridge owns the plugin connection core.
//
// Ownership boundary:
// - connection registry and channel membership
// - request/response correlation with timeout
// - command dispatch toward the current channel
//
// The pending-request table and the channel table are mutated only by
// their owning component; callers go through the public contracts.
package bridge
