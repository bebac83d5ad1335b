package protocol

// This package implements parsing and serialising the lines of the Exar
// protocol, which Exar clients use to publish events to, and subscribe to
// events from, a collection on an Exar server.
//
// - `Message` - A request from a client or a response from the server.
// - `Event` - A payload with tags. Published by clients, replayed to
//             subscribers by the server.
// - `Query` - Which events a subscription wants to receive.
//
// === General Syntax
//
// - lines are `\n` delimited, a trailing `\r` is ignored
// - fields are `\t` delimited
// - the first field is the message kind (e.g. 'Publish')
// - kinds are case sensitive
// - fields can't contain `\t`, `\r` or `\n`
//
// There are no request IDs. A client sends one request and waits for its
// response before sending the next one.
//
// === Connect
//
//  ```
//    > Connect\t<collection>\t<username>\t<password>\n
//    < Connected\n
//  ```
//
// The credentials are optional, `Connect\t<collection>\n` is also valid.
//
// === Publish
//
//  ```
//    > Publish\t<data>\t<tag1>\t<tag2>\n
//    < Published\t<id>\n
//  ```
//
// An event has zero or more tags, each in its own field.
//
// === Subscribe
//
//  ```
//    > Subscribe\t<live>\t<offset>\t<limit>\t<tag>\n
//    < Subscribed\n
//    < Event\t<id>\t<timestamp>\t<data>\t<tag1>\n
//    < Event\t<id>\t<timestamp>\t<data>\t<tag1>\t<tag2>\n
//    < EndOfEventStream\n
//  ```
//
// `<live>` is `true` or `false`, a `<limit>` of 0 means no limit and an
// empty `<tag>` matches every event.
//
// After `Subscribed` the connection only carries events. The server sends
// them in batches, each ended by `EndOfEventStream`. A live subscription
// receives a new batch whenever events are published.
//
// === Error responses
//
//  ```
//    > Publish\t<data>\n
//    < Error\t<reason>\n
//  ```
//
// Where `<reason>` is a human readable string
//
