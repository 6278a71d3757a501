package main

import (
	"context"
	"fmt"
	"time"

	graphql "github.com/lukaszraczylo/go-tagged-graphql"
	"github.com/lukaszraczylo/go-tagged-graphql/compiler"
)

var (
	botFields = compiler.Compile(compiler.Literal(`fragment BotFields on bots {
		bot_name
	}`))

	bots = compiler.Literal(`query Bots($limit: Int) {
		bots(limit: $limit) {
			...`, `
		}
	}
	query Badwords {
		badwords(distinct_on: word) {
			word
		}
	}`)
)

func run(ctx context.Context, gql *graphql.BaseClient) error {
	fields, _ := botFields.Fragment("BotFields", nil)
	factory := compiler.Compile(bots, fields)

	op, _ := factory.Operation("Bots", map[string]any{"limit": 10})
	if _, err := gql.Query(ctx, op, nil); err != nil {
		return fmt.Errorf("bots: %w", err)
	}

	badwords, _ := factory.Operation("Badwords", nil)
	done := make(chan struct{})
	result := gql.Dispatch(ctx, badwords, nil, func(data any, err error) {
		defer close(done)
		if err != nil {
			fmt.Println("Error returned from query:", err)
		}
	})
	if result.State == graphql.Pending {
		<-done
	}

	// Repeated to use the cached response
	result = gql.Dispatch(ctx, badwords, nil, nil)
	fmt.Println("Cached badwords:", result.State, result.Data != nil)
	return nil
}

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, graphql.NewConnection()); err != nil {
		fmt.Println("Error returned from query:", err)
	}
}
