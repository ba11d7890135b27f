// Package domain holds the lead domain's core value types and their rules.
package domain

// Heat is the ordered urgency/engagement tier of a lead.
type Heat string

const (
	HeatCold   Heat = "COLD"
	HeatWarm   Heat = "WARM"
	HeatHot    Heat = "HOT"
	HeatOnFire Heat = "ON_FIRE"
)

// heatOrdinals defines the ordering COLD < WARM < HOT < ON_FIRE.
var heatOrdinals = map[Heat]int{
	HeatCold:   0,
	HeatWarm:   1,
	HeatHot:    2,
	HeatOnFire: 3,
}

// Ordinal returns the heat's position in the ordering. Unknown values rank
// below COLD so a corrupt stored value can never win a max comparison.
func (h Heat) Ordinal() int {
	if ord, ok := heatOrdinals[h]; ok {
		return ord
	}
	return -1
}

// IsValid reports whether h is a known heat tier.
func (h Heat) IsValid() bool {
	_, ok := heatOrdinals[h]
	return ok
}

// MaxHeat returns the heat with the higher ordinal.
func MaxHeat(a, b Heat) Heat {
	if b.Ordinal() > a.Ordinal() {
		return b
	}
	return a
}

// Status is the pipeline stage of a lead.
type Status string

const (
	StatusNew         Status = "NEW"
	StatusContacted   Status = "CONTACTED"
	StatusQualified   Status = "QUALIFIED"
	StatusProposal    Status = "PROPOSAL"
	StatusNegotiation Status = "NEGOTIATION"
	StatusWon         Status = "WON"
	StatusLost        Status = "LOST"
	StatusMerged      Status = "MERGED"
)

// IsTerminal reports whether the status removes the lead from active pipelines.
func (s Status) IsTerminal() bool {
	return s == StatusWon || s == StatusLost || s == StatusMerged
}

// Channel is the inbound source type of a lead or message.
type Channel string

const (
	ChannelWhatsApp  Channel = "WHATSAPP"
	ChannelWebsite   Channel = "WEBSITE"
	ChannelIndiaMart Channel = "INDIAMART"
	ChannelJustDial  Channel = "JUSTDIAL"
	ChannelEmail     Channel = "EMAIL"
)

// IsValid reports whether c is a known channel.
func (c Channel) IsValid() bool {
	switch c {
	case ChannelWhatsApp, ChannelWebsite, ChannelIndiaMart, ChannelJustDial, ChannelEmail:
		return true
	}
	return false
}

// Direction distinguishes inbound from outbound messages.
type Direction string

const (
	DirectionInbound  Direction = "INBOUND"
	DirectionOutbound Direction = "OUTBOUND"
)

// ClampScore bounds a lead score to the 0-100 range.
func ClampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
