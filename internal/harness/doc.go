// Package harness runs scheduling scenarios against the real engine.
//
// Each scenario gets a fresh in-memory store and an in-memory catalog. Days
// run in order through one engine with deterministic run ids (run-1, run-2,
// ...), so identical scenarios produce identical traces for golden
// comparison.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	catalog:
//	  - {section: Movies, title: Independence Day, year: 1996, watched: true}
//	  - {section: TV Shows, title: Plebs, episodes: [true, true, false]}
//	actions:
//	  - name: Independence Day
//	    section: Movies
//	    target: Independence Day (1996)
//	    rule: {kind: annual, anchor: 2016-06-30, every: 1}
//	settings:
//	  lookahead_limit: 1
//	  sufficiency_hours: 5
//	days:
//	  - today: 2016-07-04
//	    watch: ["1001"]
//	    fail: {"1002/e01": "server busy"}
//	    expect: {applied: 1, total: 2, aborted: true}
//	assertions:
//	  - {type: marked, keys: ["1001", "1002/e01"]}
//	  - {type: last_occurrence, action: Plebs, date: ""}
//
// Catalog keys are assigned in order from 1001. Episodes of the show keyed
// K are K/e01, K/e02 and so on.
//
// # Assertion Types
//
//   - marked: the exact sequence of unwatch calls, failed ones included
//   - mark_count: the number of unwatch calls
//   - watched: whether an item is watched at the end
//   - last_occurrence: the occurrence an action was last applied for
//   - run_count: the number of recorded cycles
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/weekly.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(ctx, scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
