package broker

const queryNodeID = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      id
    }
  }
}`

const queryViewState = `
query($owner: String!, $repo: String!, $number: Int!) {
  repository(owner: $owner, name: $repo) {
    pullRequest(number: $number) {
      id
      autoMergeRequest {
        enabledAt
        mergeMethod
      }
      reviewThreads(first: 100) {
        totalCount
        nodes {
          comments {
            totalCount
          }
        }
      }
      reviews(first: 100) {
        totalCount
      }
    }
  }
}`

const mutationEnableAutoMerge = `
mutation($pullRequestId: ID!, $mergeMethod: PullRequestMergeMethod!) {
  enablePullRequestAutoMerge(input: {pullRequestId: $pullRequestId, mergeMethod: $mergeMethod}) {
    pullRequest {
      autoMergeRequest {
        enabledAt
      }
    }
  }
}`

const mutationDisableAutoMerge = `
mutation($pullRequestId: ID!) {
  disablePullRequestAutoMerge(input: {pullRequestId: $pullRequestId}) {
    pullRequest {
      autoMergeRequest {
        enabledAt
      }
    }
  }
}`
