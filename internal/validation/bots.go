// Basket - Web Analytics Event Ingestion
// Copyright 2026 Databuddy Analytics
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/databuddy-analytics/basket

package validation

import "strings"

// botHeuristics are generic substrings that indicate automated traffic:
// HTTP clients, headless browsers, and automation frameworks.
var botHeuristics = []string{
	"bot", "spider", "crawl", "scraper", "headless",
	"phantom", "selenium", "puppeteer", "playwright",
	"httpclient", "python-requests", "python-urllib", "curl", "wget",
	"java/", "go-http-client", "okhttp", "axios", "node-fetch",
}

// knownBots are crawler product names matched by themselves; kept
// separate from the heuristics so the list reads as an inventory.
var knownBots = []string{
	"googlebot", "bingbot", "slurp", "duckduckbot",
	"baiduspider", "yandexbot", "sogou", "exabot",
	"facebookexternalhit", "twitterbot", "linkedinbot",
	"applebot", "ahrefsbot", "semrushbot", "mj12bot",
	"dotbot", "petalbot", "bytespider", "gptbot", "ccbot",
	"claudebot", "amazonbot", "pingdom", "uptimerobot",
	"statuscake", "lighthouse", "pagespeed",
}

// BotDetector classifies User-Agent strings as automated traffic.
// Matching is case-insensitive substring search over all patterns in a
// single pass using an Aho-Corasick automaton, so cost does not grow
// with the pattern count. An empty User-Agent is not classified as a
// bot; server-side SDKs may omit the header.
type BotDetector struct {
	matcher *botMatcher
}

// NewBotDetector builds a detector over the built-in pattern lists plus
// any extra patterns, typically from configuration.
func NewBotDetector(extra ...string) *BotDetector {
	patterns := make([]string, 0, len(botHeuristics)+len(knownBots)+len(extra))
	patterns = append(patterns, botHeuristics...)
	patterns = append(patterns, knownBots...)
	patterns = append(patterns, extra...)
	return &BotDetector{matcher: newBotMatcher(patterns)}
}

// Match returns the first matched pattern, for logging.
func (d *BotDetector) Match(userAgent string) (string, bool) {
	if userAgent == "" {
		return "", false
	}
	return d.matcher.find(userAgent)
}

// IsBot reports whether the User-Agent matches any bot pattern.
func (d *BotDetector) IsBot(userAgent string) bool {
	_, ok := d.Match(userAgent)
	return ok
}

// botMatcher is an Aho-Corasick automaton over lowercase patterns.
// It is built once and immutable afterwards, so searches need no lock.
type botMatcher struct {
	root     *botNode
	patterns []string
}

type botNode struct {
	children map[rune]*botNode
	failure  *botNode
	output   []int // indices of patterns ending at this node
}

func newBotNode() *botNode {
	return &botNode{children: make(map[rune]*botNode)}
}

func newBotMatcher(patterns []string) *botMatcher {
	m := &botMatcher{root: newBotNode()}
	for _, p := range patterns {
		if p == "" {
			continue
		}
		m.patterns = append(m.patterns, p)
		m.insert(len(m.patterns)-1, strings.ToLower(p))
	}
	m.buildFailureLinks()
	return m
}

func (m *botMatcher) insert(index int, pattern string) {
	node := m.root
	for _, ch := range pattern {
		if node.children[ch] == nil {
			node.children[ch] = newBotNode()
		}
		node = node.children[ch]
	}
	node.output = append(node.output, index)
}

// buildFailureLinks wires each node to its longest proper suffix using
// BFS, merging output so a match via a suffix is still reported.
func (m *botMatcher) buildFailureLinks() {
	queue := make([]*botNode, 0, len(m.root.children))
	for _, child := range m.root.children {
		child.failure = m.root
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for ch, child := range current.children {
			queue = append(queue, child)

			fail := current.failure
			for fail != nil && fail.children[ch] == nil {
				fail = fail.failure
			}
			if fail == nil {
				child.failure = m.root
			} else {
				child.failure = fail.children[ch]
				child.output = append(child.output, child.failure.output...)
			}
		}
	}
}

// find scans the text once and returns the first pattern that completes.
func (m *botMatcher) find(text string) (string, bool) {
	if len(m.patterns) == 0 {
		return "", false
	}

	node := m.root
	for _, ch := range strings.ToLower(text) {
		for node != nil && node.children[ch] == nil {
			node = node.failure
		}
		if node == nil {
			node = m.root
			continue
		}
		node = node.children[ch]
		if len(node.output) > 0 {
			return m.patterns[node.output[0]], true
		}
	}
	return "", false
}
