package usecase

import (
	"fmt"
	"strings"

	"browser-agent/internal/action"
	"browser-agent/internal/entity"
)

func buildSystemPrompt(maxIterations int) string {
	var prompt strings.Builder

	prompt.WriteString("You are a browser automation agent. Complete tasks efficiently.\n\n")
	prompt.WriteString(`Every turn you get the page URL, title, a list of interactive elements and,
when available, a screenshot where each element is boxed and labelled with its index.

Element lines look like: [index]<tag attributes>text</tag>
Elements marked (outside viewport) exist but need scrolling to be seen.

Available actions (exactly one per turn):
- click_element(index)
- input_text(index, text) - replaces the current value of the field
- go_to_url(url) - absolute http(s) URL
- scroll(direction, amount) - direction is up, down, top or bottom; amount in pixels, default one screen
- done(result) - finish and report the result

IMPORTANT RULES:
1. Only use indices from the latest element list, they change after every action
2. Check the result of your previous action before choosing the next one
3. NEVER repeat an action that just failed
4. Before finishing, VERIFY the result on the page
5. Only call done when you SEE proof of success, or when the task is impossible
`)
	fmt.Fprintf(&prompt, "\nMax %d iterations.", maxIterations)

	return prompt.String()
}

// observationMessage is the user turn for one iteration: task, last action
// outcome and the current page.
func observationMessage(task string, iteration int, page *entity.PageState, last *entity.ActionResult) entity.AIMessage {
	var b strings.Builder

	fmt.Fprintf(&b, "Task: %s\n", task)
	fmt.Fprintf(&b, "Step: %d\n\n", iteration)

	if last != nil {
		if last.Success {
			b.WriteString("Previous action: succeeded\n\n")
		} else {
			fmt.Fprintf(&b, "Previous action: failed (%s): %s\nTry a different approach.\n\n", last.Kind, last.Message)
		}
	}

	fmt.Fprintf(&b, "URL: %s\n", page.URL)
	fmt.Fprintf(&b, "Title: %s\n\n", page.Title)

	if page.Structured != "" {
		b.WriteString("Page data:\n")
		b.WriteString(page.Structured)
		b.WriteString("\n")
	}

	if page.Elements == "" {
		b.WriteString("Interactive elements: none visible. Scroll or navigate.\n")
	} else {
		b.WriteString("Interactive elements:\n")
		b.WriteString(page.Elements)
	}

	msg := entity.AIMessage{Role: entity.RoleUser, Text: b.String()}
	if len(page.Screenshot) > 0 {
		msg.Image = page.Screenshot
		msg.MediaType = "image/jpeg"
	}

	return msg
}

// assistantMessage records the decision in the history in wire form, so the
// provider sees exactly what was dispatched.
func assistantMessage(resp *entity.AIResponse) entity.AIMessage {
	var parts []string
	if resp.Thought != "" {
		parts = append(parts, resp.Thought)
	}

	switch {
	case resp.Complete:
		parts = append(parts, fmt.Sprintf(`{"done": {"result": %q}}`, resp.Result))
	case resp.Action != nil:
		if wire, err := action.Marshal(resp.Action); err == nil {
			parts = append(parts, string(wire))
		}
	}

	if len(parts) == 0 {
		parts = append(parts, "(no action)")
	}

	return entity.AIMessage{Role: entity.RoleAssistant, Text: strings.Join(parts, "\n")}
}

// forgetImages drops screenshots from earlier turns; only the newest
// observation carries one.
func forgetImages(messages []entity.AIMessage) {
	for i := range messages {
		messages[i].Image = nil
		messages[i].MediaType = ""
	}
}
