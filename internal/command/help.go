package command

import (
	"fmt"
	"strconv"

	"github.com/codelanx/plugintemplate/internal/chat"
)

// HelpPageSize is how many sub-commands one help page lists.
const HelpPageSize = 5

type helpCommand struct {
	h *Handler
}

// Help lists the sub-commands of h.
func Help(h *Handler) SubCommand { return helpCommand{h: h} }

func (helpCommand) Name() string { return "help" }
func (helpCommand) Usage() string { return "/<command> help [page]" }
func (helpCommand) Description() string { return "Shows the plugin's commands" }
func (helpCommand) Permission() string { return "" }

func (c helpCommand) Execute(s Sender, args []string) bool {
	page := 1
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return false
		}
		page = n
	}

	cmds := c.h.Commands()
	pages := (len(cmds) + HelpPageSize - 1) / HelpPageSize
	if pages < 1 {
		pages = 1
	}
	if page > pages {
		page = pages
	}
	if page < 1 {
		page = 1
	}

	send(s, chat.Gold+fmt.Sprintf("Help (page %d/%d)", page, pages))
	start := (page - 1) * HelpPageSize
	end := min(start+HelpPageSize, len(cmds))
	for _, cmd := range cmds[start:end] {
		send(s, chat.Yellow+c.h.usage(cmd)+chat.White+" - "+chat.Gray+cmd.Description())
	}
	return true
}
