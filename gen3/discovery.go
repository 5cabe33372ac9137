package gen3

import (
	"context"
	"sort"
	"strconv"

	"github.com/spanpanel/spanpanel-go/gen3/wire"
)

// parseInstances decodes a GetInstancesResponse, discovering circuit
// topology by pairing trait-16 (name) and trait-26 (metric) instance ids
// positionally, after sorting and deduplicating each list independently
// (spec §4.8.2 steps 2-6). The per-model IID offset is never assumed.
func (c *Client) parseInstances(data []byte) {
	fields := wire.Parse(data)

	var nameIIDs, metricIIDs []int
	for _, item := range fields[1] {
		itemBytes, ok := item.([]byte)
		if !ok {
			continue
		}
		itemFields := wire.Parse(itemBytes)

		traitInfo := itemFields.GetBytes(1)
		if traitInfo == nil {
			continue
		}
		traitInfoFields := wire.Parse(traitInfo)

		external := traitInfoFields.GetBytes(2)
		if external == nil {
			continue
		}
		extFields := wire.Parse(external)

		var resourceID string
		if resourceData := extFields.GetBytes(1); resourceData != nil {
			ridFields := wire.Parse(resourceData)
			if rid := ridFields.GetBytes(1); rid != nil {
				resourceID = string(rid)
			}
		}

		innerInfo := extFields.GetBytes(2)
		if innerInfo == nil {
			continue
		}
		innerFields := wire.Parse(innerInfo)

		metaData := innerFields.GetBytes(1)
		if metaData == nil {
			continue
		}
		meta := wire.Parse(metaData)
		vendorID := int(meta.GetInt(1, 0))
		productID := int(meta.GetInt(2, 0))
		traitID := int(meta.GetInt(3, 0))

		var instanceID int
		if instanceData := innerFields.GetBytes(2); instanceData != nil {
			iidFields := wire.Parse(instanceData)
			instanceID = int(iidFields.GetInt(1, 0))
		}

		if productID == productGen3Panel && resourceID != "" && c.data.panelResourceID == "" {
			c.data.panelResourceID = resourceID
		}

		if vendorID != vendorSpan || instanceID <= 0 {
			continue
		}

		switch {
		case traitID == traitCircuitNames:
			nameIIDs = append(nameIIDs, instanceID)
		case traitID == traitPowerMetrics && instanceID != mainFeedIID:
			metricIIDs = append(metricIIDs, instanceID)
		}
	}

	nameIIDs = sortedUnique(nameIIDs)
	metricIIDs = sortedUnique(metricIIDs)

	for idx, metricIID := range metricIIDs {
		circuitID := idx + 1
		var nameIID int
		if idx < len(nameIIDs) {
			nameIID = nameIIDs[idx]
		}
		c.data.circuits[circuitID] = circuitInfo{
			circuitID: circuitID,
			name:      circuitDefaultName(circuitID),
			metricIID: metricIID,
			nameIID:   nameIID,
		}
	}

	c.metricIIDToCircuit = make(map[int]int, len(c.data.circuits))
	for cid, info := range c.data.circuits {
		c.metricIIDToCircuit[info.metricIID] = cid
	}
}

func sortedUnique(vals []int) []int {
	seen := make(map[int]bool, len(vals))
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	sort.Ints(out)
	return out
}

func circuitDefaultName(id int) string {
	return "Circuit " + strconv.Itoa(id)
}

// fetchCircuitNames issues a GetRevision call per discovered circuit with a
// non-zero name instance id (spec §4.8.2 step 7). Failures update no state
// and are not fatal to discovery.
func (c *Client) fetchCircuitNames(ctx context.Context) {
	for id, info := range c.data.circuits {
		if info.nameIID == 0 {
			continue
		}
		name, err := c.getCircuitNameByIID(ctx, info.nameIID)
		if err == nil && name != "" {
			info.name = name
			c.data.circuits[id] = info
		}
	}
}

func (c *Client) getCircuitNameByIID(ctx context.Context, nameIID int) (string, error) {
	req := buildGetRevisionRequest(vendorSpan, productGen3Panel, traitCircuitNames, nameIID, c.data.panelResourceID)
	resp, err := c.unary(ctx, methodGetRevision, req)
	if err != nil {
		return "", err
	}
	return parseCircuitName(resp), nil
}

// buildGetRevisionRequest composes a GetRevisionRequest frame identifying
// one trait instance by vendor/product/trait/instance id (spec §4.8.2).
func buildGetRevisionRequest(vendorID, productID, traitID, instanceID int, resourceID string) []byte {
	meta := wire.EncodeVarintField(1, uint64(vendorID))
	meta = append(meta, wire.EncodeVarintField(2, uint64(productID))...)
	meta = append(meta, wire.EncodeVarintField(3, uint64(traitID))...)
	meta = append(meta, wire.EncodeVarintField(4, 1)...) // version

	resourceIDMsg := wire.EncodeStringField(1, resourceID)

	iidMsg := wire.EncodeVarintField(1, uint64(instanceID))
	instanceMeta := wire.EncodeBytesField(1, resourceIDMsg)
	instanceMeta = append(instanceMeta, wire.EncodeBytesField(2, iidMsg)...)

	reqMetadata := wire.EncodeBytesField(2, resourceIDMsg)
	revisionRequest := wire.EncodeBytesField(1, reqMetadata)

	result := wire.EncodeBytesField(1, meta)
	result = append(result, wire.EncodeBytesField(2, instanceMeta)...)
	result = append(result, wire.EncodeBytesField(3, revisionRequest)...)
	return result
}

// parseCircuitName extracts the display name from a GetRevision response.
func parseCircuitName(data []byte) string {
	fields := wire.Parse(data)
	sr := fields.GetBytes(3)
	if sr == nil {
		return ""
	}
	srFields := wire.Parse(sr)
	payload := srFields.GetBytes(2)
	if payload == nil {
		return ""
	}
	pl := wire.Parse(payload)
	raw := pl.GetBytes(1)
	if raw == nil {
		return ""
	}
	nameFields := wire.Parse(raw)
	if name := nameFields.GetBytes(4); name != nil {
		return string(name)
	}
	return ""
}
