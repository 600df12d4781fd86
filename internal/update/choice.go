package update

// Choice is the check/download policy taken from configuration.
type Choice uint8

const (
	ChoiceNoUpdate Choice = iota
	ChoiceCheckOnly
	ChoiceDownloadOnly
	ChoiceFull
)

// ChoiceFor combines the two configuration flags.
func ChoiceFor(check, download bool) Choice {
	switch {
	case check && download:
		return ChoiceFull
	case check:
		return ChoiceCheckOnly
	case download:
		return ChoiceDownloadOnly
	default:
		return ChoiceNoUpdate
	}
}

func (c Choice) Check() bool {
	return c == ChoiceCheckOnly || c == ChoiceFull
}

func (c Choice) Download() bool {
	return c == ChoiceDownloadOnly || c == ChoiceFull
}

func (c Choice) String() string {
	switch c {
	case ChoiceNoUpdate:
		return "no-update"
	case ChoiceCheckOnly:
		return "check-only"
	case ChoiceDownloadOnly:
		return "download-only"
	case ChoiceFull:
		return "full"
	default:
		return "unknown"
	}
}
