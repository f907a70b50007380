package discord

import (
	"context"
	"fmt"
	"sort"
)

const historyPageLimit = 100

// ChannelHistory reads the entire message history of a channel,
// oldest first. The REST API pages newest-first within a page, so
// each page is re-sorted before appending; the overall walk uses the
// `after` cursor and is unbounded.
func (c *Client) ChannelHistory(ctx context.Context, channelID Snowflake) ([]Message, error) {
	var all []Message
	var after Snowflake
	for {
		path := fmt.Sprintf("/channels/%s/messages?limit=%d", channelID, historyPageLimit)
		if after > 0 {
			path += fmt.Sprintf("&after=%s", after)
		}
		var page []Message
		if err := c.doJSON(ctx, "GET", path, nil, &page); err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		sort.Slice(page, func(i, j int) bool { return page[i].ID < page[j].ID })
		all = append(all, page...)
		after = page[len(page)-1].ID
		if len(page) < historyPageLimit {
			break
		}
	}
	return all, nil
}
