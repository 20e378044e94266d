package anthropic

// BuildCachedSystemBlocks returns text as a single system block with an
// ephemeral cache breakpoint. An empty ttl uses the API default of 5m.
func BuildCachedSystemBlocks(text, ttl string) []SystemBlock {
	return []SystemBlock{
		{
			Text:         text,
			CacheControl: &CacheControl{TTL: ttl},
		},
	}
}
