package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// MemberMandatesKey returns the cache key for a member's mandate list.
func (r *CacheKeyStruct) MemberMandatesKey(memberID int) string {
	return fmt.Sprintf("member:%d:mandates", memberID)
}

// MemberMandatesGenKey returns the counter bumped on every mandate write of a
// member. A list read may only fill the cache if the counter did not move
// while it queried the database.
func (r *CacheKeyStruct) MemberMandatesGenKey(memberID int) string {
	return fmt.Sprintf("member:%d:mandates:gen", memberID)
}

// MemberNotificationsKey returns the cache key holding the last notification
// set computed for a member.
func (r *CacheKeyStruct) MemberNotificationsKey(memberID int) string {
	return fmt.Sprintf("member:%d:notifications", memberID)
}

// MemberNotificationsChannel returns the Redis PubSub channel name on which a
// member's recomputed notifications are published.
func (r *CacheKeyStruct) MemberNotificationsChannel(memberID int) string {
	return fmt.Sprintf("member:%d:notifications", memberID)
}

// ExpiryScanLockKey guards the expiry worker so only one replica scans per tick.
func (r *CacheKeyStruct) ExpiryScanLockKey() string {
	return "worker:expiry_scan:lock"
}

var CacheKey = NewCacheKeyStruct()
