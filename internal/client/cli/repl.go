package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

func (a *App) commandLoop(ctx context.Context) {
	fmt.Println("Lorekeeper CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Printf("lk %s > ", a.status())
		if !scanner.Scan() {
			return
		}
		if ctx.Err() != nil {
			return
		}

		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			a.help()
		case "l", "list":
			a.list(ctx)
		case "show":
			a.show(ctx, args)
		case "add":
			a.add(ctx)
		case "edit":
			a.edit(ctx, args)
		case "save":
			a.save(ctx)
		case "discard":
			a.discard(ctx)
		case "search":
			a.setSearch(strings.Join(args, " "))
			a.list(ctx)
		case "cat":
			a.setCategory(args)
			a.list(ctx)
		case "cats":
			a.categories(ctx)
		case "addcat":
			a.addCategory(ctx, args)
		case "delcat":
			a.deleteCategory(ctx, args)
		case "hide":
			a.setHidden(ctx, args, true)
		case "unhide":
			a.setHidden(ctx, args, false)
		case "notes":
			a.gmNotes(ctx, args)
		case "flag":
			a.requestDelete(ctx, args)
		case "unflag":
			a.cancelDelete(ctx, args)
		case "del":
			a.deleteEntry(ctx, args)
		case "comment":
			a.addComment(ctx, args)
		case "delcomment":
			a.deleteComment(ctx, args)
		case "who":
			a.who()
		case "exit", "quit":
			fmt.Println("Bye!")
			return
		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}

func (a *App) help() {
	fmt.Println("Available commands:")
	fmt.Println("  (l)ist, show <id>, search <text>, cat <id|uncategorized|->, who")
	fmt.Println("  add, edit <id>, save, discard")
	fmt.Println("  comment <id> <text>, delcomment <id> <comment-id>")
	fmt.Println("  flag <id>, unflag <id>, del <id>")
	fmt.Println("  cats, addcat <id> <label...>, delcat <id>")
	fmt.Println("  hide <id>, unhide <id>, notes <id>")
	fmt.Println("  exit")
}
