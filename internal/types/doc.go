/*
Package types defines the data structures shared by the sanity runner, the
load driver and the report emitters.

# Chat payloads

ChatMessage, ChatCompletion, Choice and Usage mirror the JSON exchanged with a
chat-completion endpoint. They are used to read responses; request bodies are
rendered by the fixture package so that arbitrary parameters survive.

# Results

RequestResult is the outcome of one HTTP call. A call that never got a
response has Status 0 and a non-empty Error. Duration is in milliseconds.

# TLS

TLSConfig carries optional client certificate, CA and verification settings
for the target endpoint.
*/
package types
